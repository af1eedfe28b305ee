// Package testutil holds export documents and fakes shared by package tests.
package testutil

// SampleL5X is a full-controller XML export with one program, two tasks and
// an add-on instruction.
const SampleL5X = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<RSLogix5000Content SchemaRevision="1.0" SoftwareRevision="32.11" TargetName="Line1" TargetType="Controller" ContainsContext="false" Owner="Plant" ExportDate="Mon Jan 06 10:00:00 2025" ExportOptions="References NoRawData L5KData DecoratedData Context Dependencies ForceProtectedEncoding AllProjDocTrans">
<Controller Use="Target" Name="Line1" ProcessorType="1756-L83E" MajorRev="32" MinorRev="11">
<Description>
<![CDATA[Packaging line controller]]>
</Description>
<DataTypes>
<DataType Name="UDT_Motor" Family="NoFamily" Class="User">
<Description>
<![CDATA[Motor control block]]>
</Description>
<Members>
<Member Name="ZZZZZZZZZZUDT_Motor0" DataType="SINT" Dimension="0" Radix="Decimal" Hidden="true" ExternalAccess="Read/Write"/>
<Member Name="Run" DataType="BIT" Dimension="0" Radix="Decimal" Hidden="false" Target="ZZZZZZZZZZUDT_Motor0" BitNumber="0" ExternalAccess="Read/Write">
<Description>
<![CDATA[Run command]]>
</Description>
</Member>
<Member Name="Speed" DataType="DINT" Dimension="0" Radix="Decimal" Hidden="false" ExternalAccess="Read/Write"/>
<Member Name="Trend" DataType="REAL" Dimension="10" Radix="Float" Hidden="false" ExternalAccess="Read/Write"/>
</Members>
</DataType>
</DataTypes>
<Modules>
<Module Name="Local" CatalogNumber="1756-L83E" Vendor="1" ProductType="14" ProductCode="166" Major="32" Minor="11" ParentModule="Local" ParentModPortId="1" Inhibited="false" MajorFault="true">
<EKey State="ExactMatch"/>
<Ports>
<Port Id="1" Address="0" Type="ICP" Upstream="false">
<Bus Size="10"/>
</Port>
<Port Id="2" Type="Ethernet" Upstream="false">
<Bus/>
</Port>
</Ports>
</Module>
<Module Name="DI_Rack" CatalogNumber="1756-IB16" Vendor="1" ProductType="7" ProductCode="58" Major="3" Minor="1" ParentModule="Local" ParentModPortId="1" Inhibited="false" MajorFault="false">
<EKey State="CompatibleModule"/>
<Ports>
<Port Id="1" Address="3" Type="ICP" Upstream="true"/>
</Ports>
<Communications CommMethod="536870913">
<Connections>
<Connection Name="StandardInput" RPI="20000" Type="Input" EventID="0"/>
</Connections>
</Communications>
</Module>
<Module Name="Remote_ENET" CatalogNumber="1756-EN2T" Vendor="1" ProductType="12" ProductCode="166" Major="11" Minor="1" ParentModule="Local" ParentModPortId="2" Inhibited="false" MajorFault="false">
<Ports>
<Port Id="1" Address="2" Type="ICP" Upstream="true"/>
<Port Id="2" Address="192.168.1.20" Type="Ethernet" Upstream="false"/>
</Ports>
</Module>
</Modules>
<AddOnInstructionDefinitions>
<AddOnInstructionDefinition Name="AOI_Valve" Revision="1.2" Vendor="Acme" ExecutePrescan="false" ExecutePostscan="false" ExecuteEnableInFalse="false">
<Description>
<![CDATA[Two position valve]]>
</Description>
<Parameters>
<Parameter Name="EnableIn" TagType="Base" DataType="BOOL" Usage="Input" Radix="Decimal" Required="false" Visible="false" ExternalAccess="Read Only">
<Description>
<![CDATA[Enable Input - System Defined Parameter]]>
</Description>
</Parameter>
<Parameter Name="EnableOut" TagType="Base" DataType="BOOL" Usage="Output" Radix="Decimal" Required="false" Visible="false" ExternalAccess="Read Only"/>
<Parameter Name="Cmd" TagType="Base" DataType="BOOL" Usage="Input" Radix="Decimal" Required="true" Visible="true" ExternalAccess="Read/Write"/>
<Parameter Name="Open" TagType="Base" DataType="BOOL" Usage="Output" Radix="Decimal" Required="true" Visible="true" ExternalAccess="Read Only"/>
<Parameter Name="Fault" TagType="Base" DataType="BOOL" Usage="Output" Radix="Decimal" Required="false" Visible="true" ExternalAccess="Read Only"/>
</Parameters>
<Routines>
<Routine Name="Logic" Type="RLL">
<RLLContent>
<Rung Number="0" Type="N">
<Text>
<![CDATA[XIC(Cmd)OTE(Open);]]>
</Text>
</Rung>
</RLLContent>
</Routine>
</Routines>
</AddOnInstructionDefinition>
</AddOnInstructionDefinitions>
<Tags>
<Tag Name="Start" TagType="Base" DataType="BOOL" Radix="Decimal" Constant="false" ExternalAccess="Read/Write">
<Description>
<![CDATA[Start push button]]>
</Description>
</Tag>
<Tag Name="Motor1" TagType="Base" DataType="UDT_Motor" Constant="false" ExternalAccess="Read/Write"/>
<Tag Name="Valve2" TagType="Base" DataType="DINT" Dimensions="4" Radix="Decimal" Constant="false" ExternalAccess="Read/Write"/>
<Tag Name="Sensor9" TagType="Base" DataType="REAL" Radix="Float" Constant="false" ExternalAccess="Read/Write"/>
<Tag Name="Timer1" TagType="Base" DataType="TIMER" Constant="false" ExternalAccess="Read/Write"/>
<Tag Name="V1" TagType="Base" DataType="AOI_Valve" Constant="false" ExternalAccess="Read/Write"/>
<Tag Name="RunAlias" TagType="Alias" Radix="Decimal" AliasFor="Motor1.Run" ExternalAccess="Read/Write"/>
</Tags>
<Programs>
<Program Name="MainProgram" TestEdits="false" MainRoutineName="MainRoutine" Disabled="false" UseAsFolder="false">
<Tags>
<Tag Name="Local1" TagType="Base" DataType="DINT" Radix="Decimal" Usage="Local" Constant="false" ExternalAccess="Read/Write"/>
</Tags>
<Routines>
<Routine Name="MainRoutine" Type="RLL">
<Description>
<![CDATA[Main ladder]]>
</Description>
<RLLContent>
<Rung Number="0" Type="N">
<Comment>
<![CDATA[Start the motor]]>
</Comment>
<Text>
<![CDATA[XIC(Start)OTE(Motor1.Run);]]>
</Text>
</Rung>
<Rung Number="1" Type="N">
<Text>
<![CDATA[XIC(Motor1.Run)TON(Timer1,?,?);]]>
</Text>
</Rung>
<Rung Number="2" Type="N">
<Comment>
<![CDATA[Valve control]]>
</Comment>
<Text>
<![CDATA[AOI_Valve(V1,Start,Local1);]]>
</Text>
</Rung>
<Rung Number="3" Type="N">
<Text>
<![CDATA[MOV(Motor1.Speed,Local1);]]>
</Text>
</Rung>
</RLLContent>
</Routine>
<Routine Name="Calc" Type="ST">
<STContent>
<Line Number="0">
<![CDATA[Local1 := Local1 + 1;]]>
</Line>
</STContent>
</Routine>
</Routines>
</Program>
</Programs>
<Tasks>
<Task Name="MainTask" Type="CONTINUOUS" Priority="10" Watchdog="500" DisableUpdateOutputs="false" InhibitTask="false">
<ScheduledPrograms>
<ScheduledProgram Name="MainProgram"/>
</ScheduledPrograms>
</Task>
<Task Name="FastTask" Type="PERIODIC" Rate="10" Priority="5" Watchdog="100" DisableUpdateOutputs="false" InhibitTask="false">
<ScheduledPrograms/>
</Task>
</Tasks>
</Controller>
</RSLogix5000Content>
`

// SampleL5K describes the same controller as SampleL5X in the text format.
const SampleL5K = `(*********************************************

  Import-Export
  Version   := RSLogix 5000 v32.11
  Owner     := Plant

**********************************************)
IE_VER := 2.25;

CONTROLLER Line1 (ProcessorType := "1756-L83E",
                  Major := 32,
                  Minor := 11,
                  Description := "Packaging line controller")
	DATATYPE UDT_Motor (Description := "Motor control block",
	                    FamilyType := NoFamily)
		SINT ZZZZZZZZZZUDT_Motor0 (Hidden := 1);
		BIT Run ZZZZZZZZZZUDT_Motor0 : 0 (Description := "Run command");
		DINT Speed (Radix := Decimal);
		REAL Trend[10] (Radix := Float);
	END_DATATYPE

	MODULE Local (Parent := "Local",
	              ParentModPortId := 1,
	              CatalogNumber := "1756-L83E",
	              Vendor := 1,
	              ProductType := 14,
	              ProductCode := 166,
	              Major := 32,
	              Minor := 11,
	              Slot := 0)
	END_MODULE

	MODULE DI_Rack (Parent := "Local",
	                ParentModPortId := 1,
	                CatalogNumber := "1756-IB16",
	                Vendor := 1,
	                ProductType := 7,
	                ProductCode := 58,
	                Major := 3,
	                Minor := 1,
	                Slot := 3)
			ConfigData  := [20,0,0];
			CONNECTION StandardInput (Rate := 20000, EventID := 0)
					InputData  := [0,0];
			END_CONNECTION

	END_MODULE

	ADD_ON_INSTRUCTION_DEFINITION AOI_Valve (Description := "Two position valve",
	                                         Revision := "1.2",
	                                         Vendor := "Acme")
			PARAMETERS
				EnableIn : BOOL (Description := "Enable Input - System Defined Parameter", Usage := Input, RADIX := Decimal, Required := No, Visible := No, ExternalAccess := Read Only);
				EnableOut : BOOL (Usage := Output, RADIX := Decimal, Required := No, Visible := No, ExternalAccess := Read Only);
				Cmd : BOOL (Usage := Input, RADIX := Decimal, Required := Yes, Visible := Yes, ExternalAccess := Read/Write);
				Open : BOOL (Usage := Output, RADIX := Decimal, Required := Yes, Visible := Yes, ExternalAccess := Read Only);
				Fault : BOOL (Usage := Output, RADIX := Decimal, Required := No, Visible := Yes, ExternalAccess := Read Only);
			END_PARAMETERS
			LOCAL_TAGS
			END_LOCAL_TAGS
			ROUTINE Logic
					N: XIC(Cmd)OTE(Open);
			END_ROUTINE

	END_ADD_ON_INSTRUCTION_DEFINITION

	TAG
		Start : BOOL (Description := "Start push button", RADIX := Decimal) := 0;
		Motor1 : UDT_Motor := [[0],0,[0.0,0.0,0.0,0.0,0.0,0.0,0.0,0.0,0.0,0.0]];
		Valve2 : DINT[4] (RADIX := Decimal) := [0,0,0,0];
		Sensor9 : REAL (RADIX := Float) := 0.0;
		Timer1 : TIMER := [0,0,0];
		V1 : AOI_Valve := [1,0,0];
		RunAlias OF Motor1.Run (RADIX := Decimal);
	END_TAG

	PROGRAM MainProgram (MAIN := "MainRoutine",
	                     MODE := 0,
	                     Disabled := No)
		TAG
			Local1 : DINT (Usage := Local, RADIX := Decimal) := 0;
		END_TAG

		ROUTINE MainRoutine (Description := "Main ladder")
				RC: "Start the motor";
				N: XIC(Start)OTE(Motor1.Run);
				N: XIC(Motor1.Run)TON(Timer1,?,?);
				RC: "Valve control";
				N: AOI_Valve(V1,Start,Local1);
				N: MOV(Motor1.Speed,Local1);
		END_ROUTINE

		ST_ROUTINE Calc
			'Local1 := Local1 + 1;
		END_ST_ROUTINE

	END_PROGRAM

	TASK MainTask (Type := CONTINUOUS, Priority := 10, Watchdog := 500, DisableUpdateOutputs := No, InhibitTask := No)
			MainProgram;
	END_TASK

	TASK FastTask (Type := PERIODIC, Rate := 10, Priority := 5, Watchdog := 100, DisableUpdateOutputs := No, InhibitTask := No)
	END_TASK

END_CONTROLLER
`

// TagsOnlyL5X is a partial export carrying nothing but controller tags.
const TagsOnlyL5X = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<RSLogix5000Content SchemaRevision="1.0" SoftwareRevision="32.11" TargetName="Line1" TargetType="Controller">
<Controller Use="Context" Name="Line1">
<Tags Use="Target">
<Tag Name="DI_Start" TagType="Base" DataType="BOOL" Radix="Decimal"/>
<Tag Name="Stop" TagType="Base" DataType="BOOL" Radix="Decimal"/>
</Tags>
</Controller>
</RSLogix5000Content>
`
